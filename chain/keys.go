package chain

import (
	"fmt"

	"github.com/bazukachain/bazuka/core"
)

// Key-space layout. A one-word prefix per concern keeps a flat kv.Store
// free of collisions without needing real column families (kv.LevelDBStore
// still gives every key a single column byte on top of this).
func heightKey() string                                { return "HGT" }
func powKey() string                                    { return "POW" }
func headerKey(n uint64) string                          { return fmt.Sprintf("HDR-%d", n) }
func bodyKey(n uint64) string                             { return fmt.Sprintf("BLK-%d", n) }
func hashIndexKey(h core.Hash) string                     { return fmt.Sprintf("HIDX-%s", h) }
func rollbackKey(n uint64) string                         { return fmt.Sprintf("RLB-%d", n) }
func accPowerKey(n uint64) string                         { return fmt.Sprintf("APOW-%d", n) }
func accountKey(a core.Address) string                    { return fmt.Sprintf("ACC-%s", a) }
func contractAccountKey(id core.ContractID) string        { return fmt.Sprintf("CAC-%s", id) }
func contractDefKey(id core.ContractID) string            { return fmt.Sprintf("CON-%s", id) }
