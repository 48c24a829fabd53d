package core

// Account is a regular, non-contract balance holder. It is created
// implicitly on first credit and is never removed; its balance may fall
// to (but never below) zero.
type Account struct {
	Balance Money  `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// ContractAccount is the summary the chain engine keeps for a zk-contract:
// the external state manager's committed root plus a local update
// counter. CompressedState must always equal the state manager's
// independently computed root for the same contract id (spec.md §8,
// invariant 4).
type ContractAccount struct {
	CompressedState Hash   `json:"compressed_state"`
	Height          uint64 `json:"height"`
}
