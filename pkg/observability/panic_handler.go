package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanicWithCallback is deferred by request handlers. It logs a panic
// with its stack under the given operation name and then calls onPanic; the
// panic is not re-raised.
func RecoverPanicWithCallback(logger logrus.FieldLogger, operation string, onPanic func(recovered interface{})) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"panic":     fmt.Sprint(r),
		"stack":     string(debug.Stack()),
		"operation": operation,
	}).Error("Panic recovered")
	if onPanic != nil {
		onPanic(r)
	}
}
