package memory_test

import (
	"testing"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/memory"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Backend { return memory.New() })
}
