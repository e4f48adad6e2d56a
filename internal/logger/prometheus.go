package logger

import (
	"github.com/maxaizer/placement-matcher/internal/metrics"
	log "github.com/sirupsen/logrus"
)

const untypedError = "unknown"

// prometheusHook counts classified failures. Warnings count only when they carry
// an error_type: skipped candidates and degraded AI calls are logged that way.
type prometheusHook struct{}

func (h *prometheusHook) Fire(entry *log.Entry) error {
	errorType, typed := entry.Data[ErrorTypeField].(string)

	switch {
	case typed && errorType != "":
		metrics.ErrorsCounter.WithLabelValues(errorType).Inc()
	case entry.Level <= log.ErrorLevel:
		metrics.ErrorsCounter.WithLabelValues(untypedError).Inc()
	}
	return nil
}

func (h *prometheusHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel}
}

func addPrometheusHook() {
	log.AddHook(&prometheusHook{})
	log.Debugf("error counting by %s enabled", ErrorTypeField)
}
