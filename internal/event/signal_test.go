package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SignalTestSuite struct {
	suite.Suite
}

func TestSignalSuite(t *testing.T) {
	suite.Run(t, new(SignalTestSuite))
}

func (suite *SignalTestSuite) TestEmitInSubscriptionOrder() {
	signal := NewSignal[int]()

	var received []string

	signal.Subscribe(func(v int) { received = append(received, "first") })
	signal.Subscribe(func(v int) { received = append(received, "second") })

	signal.Emit(1)
	suite.Equal([]string{"first", "second"}, received)
}

func (suite *SignalTestSuite) TestCloseUnregisters() {
	signal := NewSignal[string]()
	count := 0

	sub := signal.Subscribe(func(string) { count++ })
	suite.Equal(1, signal.Len())

	signal.Emit("a")
	sub.Close()
	signal.Emit("b")

	suite.Equal(1, count)
	suite.Equal(0, signal.Len())

	// Should not panic
	sub.Close()
}

func (suite *SignalTestSuite) TestCloseOnlyRemovesOwnListener() {
	signal := NewSignal[int]()
	a, b := 0, 0

	subA := signal.Subscribe(func(int) { a++ })
	signal.Subscribe(func(int) { b++ })

	subA.Close()
	signal.Emit(1)

	suite.Equal(0, a)
	suite.Equal(1, b)
}

func (suite *SignalTestSuite) TestListenerMaySubscribeDuringEmit() {
	signal := NewSignal[int]()
	inner := 0

	signal.Subscribe(func(int) {
		signal.Subscribe(func(int) { inner++ })
	})

	signal.Emit(1)
	suite.Equal(0, inner)
	suite.Equal(2, signal.Len())
}

func (suite *SignalTestSuite) TestGroupClose() {
	signal := NewSignal[int]()
	group := Group{
		signal.Subscribe(func(int) {}),
		signal.Subscribe(func(int) {}),
	}

	group.Close()
	suite.Equal(0, signal.Len())
}

func (suite *SignalTestSuite) TestConcurrentEmit() {
	signal := NewSignal[int]()

	var mu sync.Mutex

	total := 0

	signal.Subscribe(func(v int) {
		mu.Lock()
		total += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			signal.Emit(1)
		}()
	}

	wg.Wait()
	suite.Equal(50, total)
}

func (suite *SignalTestSuite) TestNilSubscriptionClose() {
	var sub *Subscription
	// Should not panic
	sub.Close()
}
