package payments

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/types"
)

// TONTransfer is what the buyer is shown: the wallet to send to and the
// comment their transfer must carry so the incoming payment can be
// matched back to this order.
type TONTransfer struct {
	WalletAddress string
	Comment       string
	AmountRUB     string
}

// RegisterTONTransfer parks the order as a pending transaction keyed by a
// short random comment. The TON webhook correlates on that comment.
func (f *Factory) RegisterTONTransfer(order types.Order) (*TONTransfer, error) {
	wallet, err := f.setting(types.SettingTONWalletAddress)
	if err != nil {
		return nil, err
	}
	if wallet == "" {
		return nil, ErrBackendUnavailable
	}

	comment := strings.Split(uuid.NewString(), "-")[0]
	rub, _ := order.Price.Float64()
	if err := f.store.CreatePendingTransaction(comment, order.UserID, rub, order); err != nil {
		return nil, err
	}

	log.Debug().Str("comment", comment).Int64("user_id", order.UserID).Msg("ton transfer registered")
	return &TONTransfer{
		WalletAddress: wallet,
		Comment:       comment,
		AmountRUB:     order.Price.StringFixed(2),
	}, nil
}
