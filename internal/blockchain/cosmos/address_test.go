package cosmos

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"tokendesk/internal/models"
)

func TestBech32RoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

	encoded, err := EncodeBech32("neutron", addr)
	if err != nil {
		t.Fatalf("EncodeBech32() error = %v", err)
	}
	if !strings.HasPrefix(encoded, "neutron1") {
		t.Errorf("EncodeBech32() = %s, want neutron1 prefix", encoded)
	}

	decoded, err := DecodeBech32("neutron", encoded)
	if err != nil {
		t.Fatalf("DecodeBech32() error = %v", err)
	}
	if decoded != addr {
		t.Errorf("DecodeBech32() = %s, want %s", decoded.Hex(), addr.Hex())
	}
}

func TestDecodeBech32(t *testing.T) {
	addr := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	neutronAddr, _ := EncodeBech32("neutron", addr)
	cosmosAddr, _ := EncodeBech32("cosmos", addr)

	last := neutronAddr[len(neutronAddr)-1]
	swapped := byte('q')
	if last == 'q' {
		swapped = 'p'
	}
	badChecksum := neutronAddr[:len(neutronAddr)-1] + string(swapped)

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"valid", neutronAddr, false},
		{"wrong prefix", cosmosAddr, true},
		{"empty", "", true},
		{"bad checksum", badChecksum, true},
		{"not bech32", "neutron1!!!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBech32("neutron", tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeBech32(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
		})
	}
}

func TestAddressesParseAddress(t *testing.T) {
	addr := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	bech, _ := EncodeBech32("neutron", addr)
	parser := Addresses{Prefix: "neutron"}

	got, err := parser.ParseAddress(" " + bech + " ")
	if err != nil || got != addr {
		t.Errorf("ParseAddress(bech32) = %s, %v", got.Hex(), err)
	}

	got, err = parser.ParseAddress(addr.Hex())
	if err != nil || got != addr {
		t.Errorf("ParseAddress(hex) = %s, %v", got.Hex(), err)
	}

	if _, err := parser.ParseAddress("neutron1xyz"); !errors.Is(err, models.ErrInvalidAddress) {
		t.Errorf("ParseAddress(bad bech32) error = %v, want ErrInvalidAddress", err)
	}
	if _, err := parser.ParseAddress("hello"); !errors.Is(err, models.ErrInvalidAddress) {
		t.Errorf("ParseAddress(garbage) error = %v, want ErrInvalidAddress", err)
	}
}
