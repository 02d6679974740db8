// Package brit implements both sides of the BRIT exchange. A Payer sends
// its wallet id and a fresh session key to a Matcher, encrypted to the
// Matcher's public key. The Matcher answers with a response encrypted
// under a key only the Payer can rebuild: SHA-256 of the wallet id, with
// the session key as IV.
package brit

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mbhd-go/internal/mbhd"
)

// SessionKeyLength is the size of a session key; it doubles as the AES IV
// of the response.
const SessionKeyLength = 16

const messageVersion = "1"

// noDate marks an absent date in serialized messages.
const noDate = -1

var (
	ErrRequestEncryption  = errors.New("could not encrypt payer request")
	ErrRequestDecryption  = errors.New("could not decrypt payer request")
	ErrResponseEncryption = errors.New("could not encrypt matcher response")
	ErrResponseDecryption = errors.New("could not decrypt matcher response")
	ErrInvalidRequest     = errors.New("invalid payer request")
	ErrInvalidResponse    = errors.New("invalid matcher response")
)

// PayerRequest is what a Payer tells the Matcher.
type PayerRequest struct {
	BritWalletID mbhd.WalletID
	SessionKey   []byte

	// FirstTransactionDate is nil when the wallet has no transactions.
	FirstTransactionDate *time.Time
}

// NewPayerRequest checks the inputs and builds a request.
func NewPayerRequest(id mbhd.WalletID, sessionKey []byte, firstTransactionDate *time.Time) (*PayerRequest, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: missing wallet id", ErrInvalidRequest)
	}
	if len(sessionKey) != SessionKeyLength {
		return nil, fmt.Errorf("%w: session key is %d bytes, want %d", ErrInvalidRequest, len(sessionKey), SessionKeyLength)
	}
	return &PayerRequest{
		BritWalletID:         id,
		SessionKey:           bytes.Clone(sessionKey),
		FirstTransactionDate: firstTransactionDate,
	}, nil
}

// Serialize renders the request as four lines: version, wallet id,
// session key in hex and the first transaction date in epoch millis or -1.
func (r *PayerRequest) Serialize() []byte {
	var b strings.Builder
	b.WriteString(messageVersion + "\n")
	b.WriteString(r.BritWalletID.String() + "\n")
	b.WriteString(hex.EncodeToString(r.SessionKey) + "\n")
	b.WriteString(formatDate(r.FirstTransactionDate))
	return []byte(b.String())
}

// ParsePayerRequest reverses Serialize.
func ParsePayerRequest(data []byte) (*PayerRequest, error) {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		return nil, fmt.Errorf("%w: got %d lines, want 4", ErrInvalidRequest, len(lines))
	}
	if lines[0] != messageVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidRequest, lines[0])
	}
	id, err := mbhd.ParseWalletID(lines[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	sessionKey, err := hex.DecodeString(lines[2])
	if err != nil {
		return nil, fmt.Errorf("%w: session key: %w", ErrInvalidRequest, err)
	}
	date, err := parseDate(lines[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return NewPayerRequest(id, sessionKey, date)
}

// MatcherResponse is what a Matcher tells the Payer: when to replay the
// wallet from and which addresses to pay fees to.
type MatcherResponse struct {
	ReplayDate       *time.Time
	BitcoinAddresses []string
}

// Serialize renders the response as the version, the replay date in epoch
// millis or -1 and one address per line.
func (r *MatcherResponse) Serialize() []byte {
	var b strings.Builder
	b.WriteString(messageVersion + "\n")
	b.WriteString(formatDate(r.ReplayDate))
	for _, a := range r.BitcoinAddresses {
		b.WriteString("\n" + a)
	}
	return []byte(b.String())
}

// ParseMatcherResponse reverses Serialize.
func ParseMatcherResponse(data []byte) (*MatcherResponse, error) {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: got %d lines, want at least 2", ErrInvalidResponse, len(lines))
	}
	if lines[0] != messageVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidResponse, lines[0])
	}
	date, err := parseDate(lines[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	resp := &MatcherResponse{ReplayDate: date}
	for _, a := range lines[2:] {
		a = strings.TrimSpace(a)
		if a == "" {
			return nil, fmt.Errorf("%w: empty address line", ErrInvalidResponse)
		}
		resp.BitcoinAddresses = append(resp.BitcoinAddresses, a)
	}
	return resp, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return strconv.Itoa(noDate)
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseDate(s string) (*time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", s, err)
	}
	if ms == noDate {
		return nil, nil
	}
	if ms < 0 {
		return nil, fmt.Errorf("negative date %d", ms)
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
