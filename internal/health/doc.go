// Package health provides composable probes and the HTTP handlers that
// expose them as liveness and readiness endpoints.
//
// Probes combine with [All] (AND), [Fixed] (static) and
// [Require] (boolean getter). [CheckFunc] adapts a plain function.
//
// [ShutdownGate] fails readiness as soon as draining starts so load
// balancers stop routing to the instance before in-flight submissions
// finish.
package health
