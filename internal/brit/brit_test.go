package brit

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mbhd-go/internal/encryption"
	"mbhd-go/internal/mbhd"
)

func testWalletID(t *testing.T, s string) mbhd.WalletID {
	t.Helper()
	id, err := mbhd.ParseWalletID(s)
	if err != nil {
		t.Fatalf("ParseWalletID(%q) error = %v", s, err)
	}
	return id
}

func testSessionKey() []byte {
	return []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
}

func TestPayerRequest_SerializeParse(t *testing.T) {
	t.Parallel()
	id := testWalletID(t, "66666666-77777777-88888888-99999999-aaaaaaaa")
	first := time.Date(2014, 1, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		first *time.Time
		want  string
	}{
		{
			name:  "with date",
			first: &first,
			want:  "1\n66666666-77777777-88888888-99999999-aaaaaaaa\n000102030405060708090a0b0c0d0e0f\n1388579400000",
		},
		{
			name: "without date",
			want: "1\n66666666-77777777-88888888-99999999-aaaaaaaa\n000102030405060708090a0b0c0d0e0f\n-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := NewPayerRequest(id, testSessionKey(), tt.first)
			if err != nil {
				t.Fatalf("NewPayerRequest() error = %v", err)
			}
			if got := string(req.Serialize()); got != tt.want {
				t.Errorf("Serialize() = %q, want %q", got, tt.want)
			}

			parsed, err := ParsePayerRequest(req.Serialize())
			if err != nil {
				t.Fatalf("ParsePayerRequest() error = %v", err)
			}
			if parsed.BritWalletID != id {
				t.Errorf("BritWalletID = %s, want %s", parsed.BritWalletID, id)
			}
			if !bytes.Equal(parsed.SessionKey, testSessionKey()) {
				t.Errorf("SessionKey = %x, want %x", parsed.SessionKey, testSessionKey())
			}
			if (parsed.FirstTransactionDate == nil) != (tt.first == nil) {
				t.Fatalf("FirstTransactionDate = %v, want %v", parsed.FirstTransactionDate, tt.first)
			}
			if tt.first != nil && !parsed.FirstTransactionDate.Equal(*tt.first) {
				t.Errorf("FirstTransactionDate = %v, want %v", parsed.FirstTransactionDate, tt.first)
			}
		})
	}
}

func TestNewPayerRequest_Invalid(t *testing.T) {
	t.Parallel()
	id := testWalletID(t, "66666666-77777777-88888888-99999999-aaaaaaaa")

	if _, err := NewPayerRequest(id, []byte("short"), nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("short session key: error = %v, want ErrInvalidRequest", err)
	}
	if _, err := NewPayerRequest(mbhd.WalletID{}, testSessionKey(), nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("zero wallet id: error = %v, want ErrInvalidRequest", err)
	}
}

func TestParsePayerRequest_Malformed(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"2\n66666666-77777777-88888888-99999999-aaaaaaaa\n000102030405060708090a0b0c0d0e0f\n-1",
		"1\nnot-an-id\n000102030405060708090a0b0c0d0e0f\n-1",
		"1\n66666666-77777777-88888888-99999999-aaaaaaaa\nzz\n-1",
		"1\n66666666-77777777-88888888-99999999-aaaaaaaa\n000102030405060708090a0b0c0d0e0f\nyesterday",
		"1\n66666666-77777777-88888888-99999999-aaaaaaaa\n000102030405060708090a0b0c0d0e0f\n-1\nextra",
	}
	for _, in := range inputs {
		if _, err := ParsePayerRequest([]byte(in)); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("ParsePayerRequest(%q) error = %v, want ErrInvalidRequest", in, err)
		}
	}
}

func TestMatcherResponse_SerializeParse(t *testing.T) {
	t.Parallel()
	replay := time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		resp *MatcherResponse
	}{
		{name: "full", resp: &MatcherResponse{ReplayDate: &replay, BitcoinAddresses: []string{"1AGNa15ZQXAZUgFiqJ2i7Z2DPU2J6hW62i", "1CUNEBjYrCn2y1SdiUMohaKUi4wpP326Lb"}}},
		{name: "no date", resp: &MatcherResponse{BitcoinAddresses: []string{"1AGNa15ZQXAZUgFiqJ2i7Z2DPU2J6hW62i"}}},
		{name: "no addresses", resp: &MatcherResponse{ReplayDate: &replay}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMatcherResponse(tt.resp.Serialize())
			if err != nil {
				t.Fatalf("ParseMatcherResponse() error = %v", err)
			}
			assertResponse(t, got, tt.resp)
		})
	}

	if _, err := ParseMatcherResponse([]byte("1\n-1\n\n1AGNa15ZQXAZUgFiqJ2i7Z2DPU2J6hW62i")); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("empty address line: error = %v, want ErrInvalidResponse", err)
	}
	if _, err := ParseMatcherResponse([]byte("1")); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("missing date: error = %v, want ErrInvalidResponse", err)
	}
}

func assertResponse(t *testing.T, got, want *MatcherResponse) {
	t.Helper()
	if (got.ReplayDate == nil) != (want.ReplayDate == nil) {
		t.Fatalf("ReplayDate = %v, want %v", got.ReplayDate, want.ReplayDate)
	}
	if want.ReplayDate != nil && !got.ReplayDate.Equal(*want.ReplayDate) {
		t.Errorf("ReplayDate = %v, want %v", got.ReplayDate, want.ReplayDate)
	}
	if strings.Join(got.BitcoinAddresses, ",") != strings.Join(want.BitcoinAddresses, ",") {
		t.Errorf("BitcoinAddresses = %v, want %v", got.BitcoinAddresses, want.BitcoinAddresses)
	}
}

func TestMatcherResponse_EncryptDecrypt(t *testing.T) {
	t.Parallel()
	id := testWalletID(t, "66666666-77777777-88888888-99999999-aaaaaaaa")
	other := testWalletID(t, "11111111-22222222-33333333-44444444-55555555")
	replay := time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC)
	resp := &MatcherResponse{ReplayDate: &replay, BitcoinAddresses: []string{"1AGNa15ZQXAZUgFiqJ2i7Z2DPU2J6hW62i"}}

	encrypted, err := EncryptMatcherResponse(resp, id, testSessionKey())
	if err != nil {
		t.Fatalf("EncryptMatcherResponse() error = %v", err)
	}

	got, err := DecryptMatcherResponse(encrypted, id, testSessionKey())
	if err != nil {
		t.Fatalf("DecryptMatcherResponse() error = %v", err)
	}
	assertResponse(t, got, resp)

	if _, err := DecryptMatcherResponse(encrypted, other, testSessionKey()); !errors.Is(err, ErrResponseDecryption) {
		t.Errorf("wrong wallet id: error = %v, want ErrResponseDecryption", err)
	}
	if _, err := DecryptMatcherResponse(encrypted, id, []byte("short")); !errors.Is(err, ErrResponseDecryption) {
		t.Errorf("short session key: error = %v, want ErrResponseDecryption", err)
	}
	if _, err := EncryptMatcherResponse(resp, id, nil); !errors.Is(err, ErrResponseEncryption) {
		t.Errorf("missing session key: error = %v, want ErrResponseEncryption", err)
	}
}

func TestPayerMatcher_RoundTrip(t *testing.T) {
	t.Parallel()

	const passphrase = "matcher-passphrase"
	dir := t.TempDir()
	keyring := encryption.NewAgeKeyring(filepath.Join(dir, "matcher.pub"), filepath.Join(dir, "matcher.key"))
	if err := keyring.Setup(passphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	pub, err := keyring.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	ctx, err := keyring.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	payer := NewPayer(pub, nil)
	matcher := NewMatcher(ctx, nil)
	id := testWalletID(t, "66666666-77777777-88888888-99999999-aaaaaaaa")
	first := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := payer.DecryptMatcherResponse([]byte("anything")); !errors.Is(err, ErrResponseDecryption) {
		t.Errorf("DecryptMatcherResponse() before a request: error = %v, want ErrResponseDecryption", err)
	}

	req, err := payer.NewPayerRequest(id, &first)
	if err != nil {
		t.Fatalf("NewPayerRequest() error = %v", err)
	}
	encReq, err := payer.EncryptPayerRequest(req)
	if err != nil {
		t.Fatalf("EncryptPayerRequest() error = %v", err)
	}
	if bytes.Contains(encReq, []byte(id.String())) {
		t.Error("encrypted request contains the wallet id in clear")
	}

	got, err := matcher.DecryptPayerRequest(encReq)
	if err != nil {
		t.Fatalf("DecryptPayerRequest() error = %v", err)
	}
	if got.BritWalletID != id || !bytes.Equal(got.SessionKey, req.SessionKey) {
		t.Errorf("DecryptPayerRequest() = %+v, want %+v", got, req)
	}

	resp := &MatcherResponse{ReplayDate: &first, BitcoinAddresses: []string{"1CUNEBjYrCn2y1SdiUMohaKUi4wpP326Lb"}}
	encResp, err := matcher.EncryptMatcherResponse(resp, got)
	if err != nil {
		t.Fatalf("EncryptMatcherResponse() error = %v", err)
	}
	decoded, err := payer.DecryptMatcherResponse(encResp)
	if err != nil {
		t.Fatalf("DecryptMatcherResponse() error = %v", err)
	}
	assertResponse(t, decoded, resp)
}

func TestEncryptPayerRequest_MalformedKey(t *testing.T) {
	t.Parallel()
	id := testWalletID(t, "66666666-77777777-88888888-99999999-aaaaaaaa")
	req, err := NewPayerRequest(id, testSessionKey(), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewPayer("-----BEGIN PGP PUBLIC KEY BLOCK-----", nil).EncryptPayerRequest(req)
	if !errors.Is(err, ErrRequestEncryption) {
		t.Errorf("EncryptPayerRequest() error = %v, want ErrRequestEncryption", err)
	}
}

func TestMatcher_GarbageRequest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	keyring := encryption.NewAgeKeyring(filepath.Join(dir, "m.pub"), filepath.Join(dir, "m.key"))
	if err := keyring.Setup("pw"); err != nil {
		t.Fatal(err)
	}
	ctx, err := keyring.Unlock("pw")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewMatcher(ctx, nil).DecryptPayerRequest([]byte("not armored")); !errors.Is(err, ErrRequestDecryption) {
		t.Errorf("DecryptPayerRequest() error = %v, want ErrRequestDecryption", err)
	}
}
