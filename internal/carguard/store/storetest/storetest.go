// Package storetest holds the behavioural contract every persistence
// backend must satisfy. Backend packages run it from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
)

// Factory returns a fresh, empty backend for one test.
type Factory func(t *testing.T) store.Backend

type ContractSuite struct {
	suite.Suite
	factory Factory
	backend store.Backend
}

// Run executes the contract suite against backends built by factory.
func Run(t *testing.T, factory Factory) {
	suite.Run(t, &ContractSuite{factory: factory})
}

func (s *ContractSuite) SetupTest() {
	s.backend = s.factory(s.T())
}

func (s *ContractSuite) TearDownTest() {
	if s.backend != nil {
		s.NoError(s.backend.Close())
	}
}

func (s *ContractSuite) TestGetMissingReturnsNotFound() {
	_, err := s.backend.Get(context.Background(), "gallery")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *ContractSuite) TestPutOverwrites() {
	ctx := context.Background()
	s.Require().NoError(s.backend.Put(ctx, "config", []byte("v1")))
	s.Require().NoError(s.backend.Put(ctx, "config", []byte("version-two")))

	got, err := s.backend.Get(ctx, "config")
	s.Require().NoError(err)
	s.Equal([]byte("version-two"), got)
}

func (s *ContractSuite) TestKeysAreIndependent() {
	ctx := context.Background()
	s.Require().NoError(s.backend.Put(ctx, "a", []byte{0x00, 0x01}))
	s.Require().NoError(s.backend.Put(ctx, "faces/b/1", []byte{0xff}))

	a, err := s.backend.Get(ctx, "a")
	s.Require().NoError(err)
	b, err := s.backend.Get(ctx, "faces/b/1")
	s.Require().NoError(err)

	s.Equal([]byte{0x00, 0x01}, a)
	s.Equal([]byte{0xff}, b)
}

func (s *ContractSuite) TestScanEmptyStream() {
	calls := 0
	err := s.backend.Scan(context.Background(), "attempts", func([]byte) bool {
		calls++
		return true
	})
	s.NoError(err)
	s.Zero(calls)
}

func (s *ContractSuite) TestScanNewestFirst() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.backend.Append(ctx, "attempts", []byte(fmt.Sprintf("rec-%d", i))))
	}

	var got []string
	s.Require().NoError(s.backend.Scan(ctx, "attempts", func(data []byte) bool {
		got = append(got, string(data))
		return true
	}))

	s.Equal([]string{"rec-4", "rec-3", "rec-2", "rec-1", "rec-0"}, got)
}

func (s *ContractSuite) TestScanStopsEarly() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.backend.Append(ctx, "attempts", []byte(fmt.Sprintf("rec-%d", i))))
	}

	var got []string
	s.Require().NoError(s.backend.Scan(ctx, "attempts", func(data []byte) bool {
		got = append(got, string(data))
		return len(got) < 2
	}))

	s.Equal([]string{"rec-4", "rec-3"}, got)
}

func (s *ContractSuite) TestStreamsAreIndependent() {
	ctx := context.Background()
	s.Require().NoError(s.backend.Append(ctx, "a", []byte("x")))
	s.Require().NoError(s.backend.Append(ctx, "b", []byte("y")))

	var got [][]byte
	s.Require().NoError(s.backend.Scan(ctx, "b", func(data []byte) bool {
		got = append(got, data)
		return true
	}))
	s.Equal([][]byte{[]byte("y")}, got)
}

func (s *ContractSuite) TestBinaryRecordsSurvive() {
	ctx := context.Background()
	rec := []byte{0x00, '\n', 0xff, '\r', 0x01}
	s.Require().NoError(s.backend.Append(ctx, "bin", rec))

	var got []byte
	s.Require().NoError(s.backend.Scan(ctx, "bin", func(data []byte) bool {
		got = data
		return false
	}))
	s.Equal(rec, got)
}

func (s *ContractSuite) TestConcurrentAppendsAreNotLost() {
	ctx := context.Background()
	const n = 40

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.NoError(s.backend.Append(ctx, "attempts", []byte(fmt.Sprintf("r%d", i))))
		}(i)
	}
	wg.Wait()

	count := 0
	s.Require().NoError(s.backend.Scan(ctx, "attempts", func([]byte) bool {
		count++
		return true
	}))
	s.Equal(n, count)
}
