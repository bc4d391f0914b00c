/*
Package event holds the contracts shared by the event service packages: the Service
capability set, subscriber interfaces, reference strength and subscription kinds.
*/
package event
