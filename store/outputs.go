package store

import "fmt"

// outputs holds the chain-storage core's non-MMR maps: the UTXO/STXO spend
// state machine, the Kernels map, Headers-by-height plus its BlockHash
// index, and the Orphans map. None of these types take their own lock —
// Backend's single exclusive lock (spec §5) guards everything here exactly
// as it guards the three ledgers.
type outputs struct {
	utxos       map[Hash]UnspentOutput
	stxos       map[Hash]UnspentOutput
	kernels     map[Hash]TransactionKernel
	headers     map[uint64]BlockHeader
	blockHashes map[Hash]uint64
	orphans     map[Hash]OrphanBlock
}

func newOutputs() *outputs {
	return &outputs{
		utxos:       make(map[Hash]UnspentOutput),
		stxos:       make(map[Hash]UnspentOutput),
		kernels:     make(map[Hash]TransactionKernel),
		headers:     make(map[uint64]BlockHeader),
		blockHashes: make(map[Hash]uint64),
		orphans:     make(map[Hash]OrphanBlock),
	}
}

// insertUTXO adds a freshly created UTXO. It is an error for the commitment
// hash to already exist in either the UTXO or STXO map (spec §4.4).
func (o *outputs) insertUTXO(out UnspentOutput) error {
	h := out.Hash()
	if _, ok := o.utxos[h]; ok {
		return fmt.Errorf("%w: Duplicate key", ErrInvalidOperation)
	}
	if _, ok := o.stxos[h]; ok {
		return fmt.Errorf("%w: Duplicate key", ErrInvalidOperation)
	}
	o.utxos[h] = out
	return nil
}

// spend moves a UTXO into the STXO map, returning the record so the caller
// (Backend.applySpend) can push its Index into the working UTXO checkpoint's
// deletions. A hash already spent is indistinguishable here from one that
// never existed — both report ErrUnspendableInput (spec §4.4).
func (o *outputs) spend(h Hash) (UnspentOutput, error) {
	out, ok := o.utxos[h]
	if !ok {
		return UnspentOutput{}, ErrUnspendableInput
	}
	delete(o.utxos, h)
	o.stxos[h] = out
	return out, nil
}

// unspend moves an STXO back into the UTXO map. MMR state is not repaired
// here — the enclosing rewind that calls this is what drops the checkpoint
// that recorded the original deletion (spec §3, §4.4).
func (o *outputs) unspend(h Hash) (UnspentOutput, error) {
	out, ok := o.stxos[h]
	if !ok {
		return UnspentOutput{}, ErrUnspendError
	}
	delete(o.stxos, h)
	o.utxos[h] = out
	return out, nil
}

// deleteUTXO removes h from whichever of the UTXO/STXO maps holds it. No MMR
// mutation happens (spec §4.4's cleanup-path Delete).
func (o *outputs) deleteUTXO(h Hash) {
	delete(o.utxos, h)
	delete(o.stxos, h)
}

func (o *outputs) insertKernel(k TransactionKernel) error {
	h := k.Hash()
	if _, ok := o.kernels[h]; ok {
		return fmt.Errorf("%w: Duplicate key", ErrInvalidOperation)
	}
	o.kernels[h] = k
	return nil
}

func (o *outputs) deleteKernel(h Hash) {
	delete(o.kernels, h)
}

// insertHeader adds a header at its height and maintains the BlockHash
// index, failing on a duplicate height (spec §4.5 "header duplicate check").
func (o *outputs) insertHeader(h BlockHeader) error {
	if _, ok := o.headers[h.Height]; ok {
		return fmt.Errorf("%w: Duplicate key", ErrInvalidOperation)
	}
	o.headers[h.Height] = h
	o.blockHashes[h.Hash()] = h.Height
	return nil
}

// deleteHeader removes the header at height and its BlockHash index entry
// together, preserving the index-consistency invariant (spec §8 property
// 8).
func (o *outputs) deleteHeader(height uint64) {
	h, ok := o.headers[height]
	if !ok {
		return
	}
	delete(o.headers, height)
	delete(o.blockHashes, h.Hash())
}

func (o *outputs) insertOrphan(b OrphanBlock) error {
	h := b.Hash()
	if _, ok := o.orphans[h]; ok {
		return fmt.Errorf("%w: Duplicate key", ErrInvalidOperation)
	}
	o.orphans[h] = b
	return nil
}

func (o *outputs) deleteOrphan(h Hash) {
	delete(o.orphans, h)
}

// orphanCount reports how many blocks currently sit in the orphan pool.
func (o *outputs) orphanCount() int {
	return len(o.orphans)
}

// forEachOrphan, forEachKernel, forEachHeader, and forEachUTXO invoke f on
// every entry. Per spec §4.6, f's own errors never stop the scan — they are
// collected and returned wrapped once iteration completes, so a single bad
// entry cannot hide the rest of a best-effort recovery scan.
func (o *outputs) forEachOrphan(f func(OrphanBlock) error) error {
	var errs []error
	for _, b := range o.orphans {
		if err := f(b); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func (o *outputs) forEachKernel(f func(TransactionKernel) error) error {
	var errs []error
	for _, k := range o.kernels {
		if err := f(k); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func (o *outputs) forEachHeader(f func(BlockHeader) error) error {
	var errs []error
	for _, h := range o.headers {
		if err := f(h); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func (o *outputs) forEachUTXO(f func(UnspentOutput) error) error {
	var errs []error
	for _, u := range o.utxos {
		if err := f(u); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d callback error(s) during scan: %v", ErrUnexpectedResult, len(errs), errs)
}
