/*
Package proxy adapts a (target, handler) pair into a subscriber an event service can hold.

There are three variants: TypeProxy for type-based subscriptions, TopicProxy for exact
topics and PatternProxy for full-match topic patterns. Each validates the handler's shape
once at construction, reports liveness of its target and compares equal to another proxy
over the same target, handler and match key.
*/
package proxy
