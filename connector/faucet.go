package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// fundFromFaucet asks a test network's faucet to fund the address. Called at
// most once per Connect, and only for a freshly generated credential.
func (c *Connector) fundFromFaucet(ctx context.Context, faucetURL, address string) error {
	body, err := json.Marshal(map[string]string{"destination": address})
	if err != nil {
		return errors.Wrap(err, "encoding faucet request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, faucetURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building faucet request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling faucet")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("faucet returned status %d", resp.StatusCode)
	}
	c.log.Info().Str("address", address).Msg("faucet funding requested")
	return nil
}
