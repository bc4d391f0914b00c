/*
Package rabbitmq forwards topic publications to RabbitMQ.
Each publication is published to a topic exchange with the event topic as routing
key. It includes an auto-reconnect publisher and supports optional header
propagation via an event.HeaderPropagator.
*/
package rabbitmq
