package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iho/esledger/internal/domain"
)

// putIfNewer stores ARGV[1] unless the stored value has a version at least
// ARGV[2]. Returns 1 when the value was written.
var putIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local stored = cjson.decode(current)
  if tonumber(stored.version) >= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

// BalanceView implements usecase.BalanceView using Redis.
type BalanceView struct {
	client *redis.Client
	prefix string
}

// NewBalanceView creates a new BalanceView.
func NewBalanceView(client *redis.Client) *BalanceView {
	return &BalanceView{
		client: client,
		prefix: "balance:",
	}
}

// Get returns the projected balance of an account.
func (v *BalanceView) Get(ctx context.Context, accountID string) (domain.AccountBalance, error) {
	raw, err := v.client.Get(ctx, v.prefix+accountID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AccountBalance{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.AccountBalance{}, fmt.Errorf("failed to read balance: %w", err)
	}

	var b domain.AccountBalance
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.AccountBalance{}, fmt.Errorf("failed to decode balance: %w", err)
	}
	return b, nil
}

// Put stores b if it is newer than what the view holds.
func (v *BalanceView) Put(ctx context.Context, b domain.AccountBalance) (bool, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return false, err
	}

	written, err := putIfNewer.Run(ctx, v.client, []string{v.prefix + b.AccountID}, payload, b.Version).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to store balance: %w", err)
	}
	return written == 1, nil
}

// Overwrite stores b unconditionally. Reconciliation uses it to replace a
// projection whose version is current but whose balance is wrong.
func (v *BalanceView) Overwrite(ctx context.Context, b domain.AccountBalance) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if err := v.client.Set(ctx, v.prefix+b.AccountID, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to overwrite balance: %w", err)
	}
	return nil
}
