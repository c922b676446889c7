package errors

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestClassifyStoreErrorProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("authentication failures are never retried", prop.ForAll(
		func(prefix, suffix string) bool {
			err := ClassifyStoreError(errors.New(prefix + "authentication failed" + suffix))
			return IsPermanent(err) && !IsTransient(err)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("network failures are retried", prop.ForAll(
		func(msg string) bool {
			return IsTransient(ClassifyStoreError(errors.New(msg)))
		},
		gen.OneConstOf(
			"connection refused",
			"server selection error",
			"i/o timeout",
			"no reachable servers",
			"database is locked",
			"connection reset by peer",
		),
	))

	properties.Property("classification keeps the original error reachable", prop.ForAll(
		func(msg string) bool {
			orig := errors.New(msg)
			return errors.Is(ClassifyStoreError(orig), orig)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
