package event

// Kind is the subscription discipline family a declaration belongs to.
type Kind int

const (
	// TypeBased subscriptions match on the published event's Go type.
	TypeBased Kind = iota
	// TopicExact subscriptions match a topic string exactly.
	TopicExact
	// TopicPattern subscriptions match topics with a full-match regular expression.
	TopicPattern
)

func (k Kind) String() string {
	switch k {
	case TypeBased:
		return "type"
	case TopicExact:
		return "topic"
	case TopicPattern:
		return "topic-pattern"
	default:
		return "unknown"
	}
}

// ReferenceStrength says whether a subscription keeps its owner alive.
type ReferenceStrength int

const (
	// Strong subscriptions own their target.
	Strong ReferenceStrength = iota
	// Weak subscriptions borrow their target and stop firing once it is released.
	Weak
)

func (s ReferenceStrength) String() string {
	if s == Weak {
		return "weak"
	}

	return "strong"
}
