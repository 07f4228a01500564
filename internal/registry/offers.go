package registry

import (
	"context"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// CreateSalesOffer puts a key up for sale to a named buyer at a fixed
// price. A pending trade offer on the key is cleared: a key is either
// for sale or bartering, never both. Calling again while an offer is
// live overwrites it.
func (r *Registry) CreateSalesOffer(ctx context.Context, caller, keyID, buyer string, price uint64, resellable bool) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	if err := validateEntityID(keyID); err != nil {
		return err
	}
	if buyer == "" {
		return errors.New(errors.CodeAccountEmpty, "buyer account is required")
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		key, err := requireKeyOwner(tx, keyID, caller)
		if err != nil {
			return err
		}
		if !key.CanSell {
			return errCapability(keyID, "selling")
		}
		if err := tx.DeleteTradeOffer(keyID); err != nil {
			return err
		}
		return tx.PutSalesOffer(storage.SalesOffer{KeyID: keyID, Buyer: buyer, Price: price, Resellable: resellable})
	})
}

// CancelSalesOffer withdraws a key's sales offer. Cancelling when no
// offer is live is a no-op.
func (r *Registry) CancelSalesOffer(ctx context.Context, caller, keyID string) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	if err := validateEntityID(keyID); err != nil {
		return err
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		if _, err := requireKeyOwner(tx, keyID, caller); err != nil {
			return err
		}
		return tx.DeleteSalesOffer(keyID)
	})
}

// SalesOffer returns a key's live sales offer, or live == false when the
// key has none.
func (r *Registry) SalesOffer(ctx context.Context, keyID string) (offer storage.SalesOffer, live bool, err error) {
	if err := validateEntityID(keyID); err != nil {
		return storage.SalesOffer{}, false, err
	}
	err = r.store.View(ctx, func(tx storage.ReadTx) error {
		if _, err := getKey(tx, keyID); err != nil {
			return err
		}
		stored, err := tx.SalesOffer(keyID)
		if err == storage.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		offer, live = stored, true
		return nil
	})
	if err != nil {
		return storage.SalesOffer{}, false, err
	}
	return offer, live, nil
}

// TradeOffer returns a key's pending trade offer, or pending == false
// when the key has none.
func (r *Registry) TradeOffer(ctx context.Context, keyID string) (offer storage.TradeOffer, pending bool, err error) {
	if err := validateEntityID(keyID); err != nil {
		return storage.TradeOffer{}, false, err
	}
	err = r.store.View(ctx, func(tx storage.ReadTx) error {
		if _, err := getKey(tx, keyID); err != nil {
			return err
		}
		stored, err := tx.TradeOffer(keyID)
		if err == storage.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		offer, pending = stored, true
		return nil
	})
	if err != nil {
		return storage.TradeOffer{}, false, err
	}
	return offer, pending, nil
}

// PurchaseKey settles a key's sales offer. The caller must be the named
// buyer and offer the exact price, and must have pre-authorized at least
// that amount to the registry's ledger account. Settlement pays the
// current owner before any local state changes; a failed transfer leaves
// the store untouched. On success the caller becomes the owner, the sell
// flag is replaced with the offer's resellable value, and the offer is
// cleared.
func (r *Registry) PurchaseKey(ctx context.Context, caller, keyID string, offeredValue uint64) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	if err := validateEntityID(keyID); err != nil {
		return err
	}
	book := r.settlementLedger()
	if book == nil {
		return errors.New(errors.CodeTransferFailed, "settlement ledger is not configured")
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		key, err := getKey(tx, keyID)
		if err != nil {
			return err
		}
		if !key.CanSell {
			return errCapability(keyID, "selling")
		}
		offer, err := tx.SalesOffer(keyID)
		if err == storage.ErrNotFound {
			return errors.WithMetadata(errors.CodeOfferMismatch, "no live offer on key "+keyID,
				map[string]string{"ID": keyID})
		}
		if err != nil {
			return err
		}
		if offer.Buyer != caller || offer.Price != offeredValue {
			return errors.WithMetadata(errors.CodeOfferMismatch, "offer on key "+keyID+" does not match caller or price",
				map[string]string{"ID": keyID})
		}

		authorized, err := book.Allowance(ctx, caller, r.account)
		if err != nil {
			return errors.Wrap(errors.CodeTransferFailed, "read allowance", err)
		}
		if authorized < offer.Price {
			return errors.New(errors.CodeInsufficientAuthorization, "authorized balance is below the offer price")
		}

		// Pay the pre-transfer owner. The transfer is the last step that
		// can fail; everything after commits together.
		seller := key.Owner
		if err := book.TransferFrom(ctx, caller, seller, r.account, offer.Price); err != nil {
			return errors.Wrap(errors.CodeTransferFailed, "settlement transfer", err)
		}

		key.Owner = caller
		key.CanSell = offer.Resellable
		key.UpdatedAt = r.now()
		if err := tx.PutKey(key); err != nil {
			return err
		}
		if err := tx.DeleteSalesOffer(keyID); err != nil {
			return err
		}
		return emit(audit.Event{
			Type:   audit.EventKeySold,
			Owner:  caller,
			KeyID:  keyID,
			Seller: seller,
			Buyer:  caller,
			Price:  offer.Price,
		})
	})
}

// TradeKey proposes or completes a barter of have for want. If want
// already carries a pending offer naming have, the keys swap owners and
// the matched offer clears. Otherwise have's sales offer, if any, is
// cleared and a pending offer Trading(want) is recorded on have; a later
// reciprocal call completes the swap. Both keys must allow trading.
func (r *Registry) TradeKey(ctx context.Context, caller, haveID, wantID string) (matched bool, err error) {
	if err := validateAccount(caller); err != nil {
		return false, err
	}
	if err := validateEntityID(haveID); err != nil {
		return false, err
	}
	if err := validateEntityID(wantID); err != nil {
		return false, err
	}
	if haveID == wantID {
		return false, errors.New(errors.CodeTradeSelfTarget, "a key cannot be traded against itself")
	}
	err = r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		have, err := requireKeyOwner(tx, haveID, caller)
		if err != nil {
			return err
		}
		want, err := getKey(tx, wantID)
		if err != nil {
			return err
		}
		if !have.CanTrade {
			return errCapability(haveID, "trading")
		}
		if !want.CanTrade {
			return errCapability(wantID, "trading")
		}

		now := r.now()
		counter, err := tx.TradeOffer(wantID)
		if err != nil && err != storage.ErrNotFound {
			return err
		}
		if err == nil && counter.WantKeyID == haveID {
			// Reciprocal offer found: complete the swap. Only the matched
			// side held pending state, so only it clears.
			have.Owner, want.Owner = want.Owner, have.Owner
			have.UpdatedAt, want.UpdatedAt = now, now
			if err := tx.PutKey(have); err != nil {
				return err
			}
			if err := tx.PutKey(want); err != nil {
				return err
			}
			if err := tx.DeleteTradeOffer(wantID); err != nil {
				return err
			}
			matched = true
			return emit(audit.Event{
				Type:         audit.EventKeysTraded,
				Owner:        caller,
				KeyID:        haveID,
				CounterKeyID: wantID,
			})
		}

		// One-sided proposal: record it, displacing any sales offer.
		if err := tx.DeleteSalesOffer(haveID); err != nil {
			return err
		}
		return tx.PutTradeOffer(storage.TradeOffer{KeyID: haveID, WantKeyID: wantID})
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}
