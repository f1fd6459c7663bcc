package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Marketen/validator-client/internal/application/domain"
)

// Config holds runtime configuration for the validator client.
type Config struct {
	BeaconNodeURL   string
	RemoteSignerURL string

	ValidatorIndices []domain.ValidatorIndex
	Graffiti         *[32]byte

	GenesisTime    time.Time
	SecondsPerSlot time.Duration
	SlotsPerEpoch  domain.Slot

	HTTPAPIAddr string

	FetchRetries int
	FetchBackoff time.Duration
	CallTimeout  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	beaconURL := strings.TrimSpace(os.Getenv("BEACON_NODE_URL"))
	if beaconURL == "" {
		return nil, fmt.Errorf("BEACON_NODE_URL is required")
	}

	signerURL := strings.TrimSpace(os.Getenv("REMOTE_SIGNER_URL"))
	if signerURL == "" {
		return nil, fmt.Errorf("REMOTE_SIGNER_URL is required")
	}

	indices, err := parseValidatorIndices(os.Getenv("VALIDATOR_INDICES"))
	if err != nil {
		return nil, err
	}

	genesisStr := strings.TrimSpace(os.Getenv("GENESIS_TIME"))
	if genesisStr == "" {
		return nil, fmt.Errorf("GENESIS_TIME is required (unix seconds)")
	}
	genesisSec, err := strconv.ParseInt(genesisStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GENESIS_TIME: %q", genesisStr)
	}

	secondsPerSlot, err := positiveIntEnv("SECONDS_PER_SLOT", 12)
	if err != nil {
		return nil, err
	}

	slotsPerEpoch, err := positiveIntEnv("SLOTS_PER_EPOCH", 32)
	if err != nil {
		return nil, err
	}

	fetchRetries, err := positiveIntEnv("DUTY_FETCH_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	fetchBackoff, err := positiveIntEnv("DUTY_FETCH_BACKOFF_SECONDS", 2)
	if err != nil {
		return nil, err
	}

	callTimeout, err := positiveIntEnv("CALL_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}

	var graffiti *[32]byte
	if g := os.Getenv("GRAFFITI"); g != "" {
		if len(g) > 32 {
			return nil, fmt.Errorf("GRAFFITI must be at most 32 bytes, got %d", len(g))
		}
		var buf [32]byte
		copy(buf[:], g)
		graffiti = &buf
	}

	apiAddr := strings.TrimSpace(os.Getenv("HTTP_API_ADDR"))
	if apiAddr == "" {
		apiAddr = ":5051"
	}

	return &Config{
		BeaconNodeURL:    beaconURL,
		RemoteSignerURL:  signerURL,
		ValidatorIndices: indices,
		Graffiti:         graffiti,
		GenesisTime:      time.Unix(genesisSec, 0),
		SecondsPerSlot:   time.Duration(secondsPerSlot) * time.Second,
		SlotsPerEpoch:    domain.Slot(slotsPerEpoch),
		HTTPAPIAddr:      apiAddr,
		FetchRetries:     fetchRetries,
		FetchBackoff:     time.Duration(fetchBackoff) * time.Second,
		CallTimeout:      time.Duration(callTimeout) * time.Second,
	}, nil
}

func parseValidatorIndices(raw string) ([]domain.ValidatorIndex, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("VALIDATOR_INDICES is required (e.g. \"12,3,4,5,76,87\")")
	}

	rawParts := strings.Split(raw, ",")
	indices := make([]domain.ValidatorIndex, 0, len(rawParts))
	for _, p := range rawParts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid validator index %q in VALIDATOR_INDICES: %w", p, err)
		}
		indices = append(indices, domain.ValidatorIndex(n))
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("no valid validator indices parsed from VALIDATOR_INDICES")
	}
	return indices, nil
}

func positiveIntEnv(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}
