/*
Package descriptor turns subscription declarations into validated descriptors.

A subscriber-providing object implements Provider and lists its handlers:

	func (s *Orders) Subscriptions() []descriptor.Declaration {
		return []descriptor.Declaration{
			descriptor.Event(s.OnCreated),
			descriptor.Topic("orders.audit", s.OnAudit, descriptor.Weak()),
			descriptor.TopicPattern(`orders\..*`, s.OnAny, descriptor.OnService("orders")),
		}
	}
*/
package descriptor
