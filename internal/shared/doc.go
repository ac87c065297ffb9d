// Package shared holds code used across layers that belongs to no single
// domain package.
//
// The testutil subpackage provides slog capture helpers and analysis
// fixtures for package tests:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    svc := NewThing(logger)
//	    // ...
//	    testutil.AssertLogContains(t, logs, slog.LevelInfo, "started")
//	}
package shared
