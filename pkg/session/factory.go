package session

import (
	"errors"

	"github.com/marmos91/dittonet/pkg/event"
)

// Factory builds a Session from an accept completion.
type Factory interface {
	CreateSession(rec *event.Record) (*Session, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(rec *event.Record) (*Session, error)

func (f FactoryFunc) CreateSession(rec *event.Record) (*Session, error) {
	return f(rec)
}

type defaultFactory struct {
	opts Options
}

// NewFactory returns a Factory that wraps the accepted connection with opts.
func NewFactory(opts Options) Factory {
	return &defaultFactory{opts: opts}
}

func (f *defaultFactory) CreateSession(rec *event.Record) (*Session, error) {
	if rec == nil || rec.Conn == nil {
		return nil, errors.New("session: accept completion carries no connection")
	}
	return New(rec.Conn, f.opts), nil
}
