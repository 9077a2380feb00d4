package lifecycle

import "github.com/rs/zerolog"

// Observer is told about every attempted status change, refused or not.
type Observer interface {
	ObserveTransition(kind, from, to string, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(kind, from, to string, err error)

func (f ObserverFunc) ObserveTransition(kind, from, to string, err error) {
	f(kind, from, to, err)
}

type multiObserver []Observer

func (m multiObserver) ObserveTransition(kind, from, to string, err error) {
	for _, o := range m {
		o.ObserveTransition(kind, from, to, err)
	}
}

// Observers fans a transition out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

// LogObserver writes one structured log line per transition.
func LogObserver(logger zerolog.Logger) Observer {
	return ObserverFunc(func(kind, from, to string, err error) {
		evt := logger.Info()
		if err != nil {
			evt = logger.Warn().Err(err)
		}
		evt.
			Str("record", kind).
			Str("from", from).
			Str("to", to).
			Msg("status transition")
	})
}
