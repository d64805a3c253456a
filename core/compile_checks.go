package core

import (
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-idp-services/stat"
)

var (
	_ stat.FlushTarget = (*Service)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
