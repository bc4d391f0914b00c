/*
Package eventservice provides the default in-process event service.
It keeps exact-type, type-hierarchy, exact-topic and topic-pattern registrations,
delivers synchronously or in parallel, and drops subscribers whose target has been released.
*/
package eventservice
