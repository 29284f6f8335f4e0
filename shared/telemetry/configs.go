package telemetry

var (
	// OrderServiceConfig is the telemetry configuration for the order service
	OrderServiceConfig = Config{
		ServiceName:    "order-service",
		ServiceVersion: "1.0.0",
	}
)

// Metric names emitted by the order saga
const (
	OrderTransitionsMetric         = "order_transitions_total"
	OrderTransitionsRejectedMetric = "order_transitions_rejected_total"
	OrderCompensationsMetric       = "order_compensations_total"
	MessagesDuplicatedMetric       = "messages_duplicated_total"
)

// WithOTLPEndpoint sets the OTLP endpoint for a config
func (c Config) WithOTLPEndpoint(endpoint string) Config {
	c.OTLPEndpoint = endpoint
	return c
}

// WithServiceName sets the service name for a config
func (c Config) WithServiceName(name string) Config {
	c.ServiceName = name
	return c
}
