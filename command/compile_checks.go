package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RunBatchMessage] = (*RunBatchCommand)(nil)
	_ gocmd.Commander[DispatchMessage] = (*DispatchCommand)(nil)
)
