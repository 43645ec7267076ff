package epu

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time.Now so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func NewRealClock() *RealClock { return &RealClock{} }

func (*RealClock) Now() time.Time { return time.Now() }

// IDGenerator produces run identifiers for update operations.
type IDGenerator interface {
	New() string
}

type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator { return &UUIDGenerator{} }

func (*UUIDGenerator) New() string { return uuid.NewString() }
