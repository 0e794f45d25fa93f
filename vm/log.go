package vm

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("cnpl.vm")
