package kafka

// WithWriter exposes withWriter to the external test package.
var WithWriter = withWriter
