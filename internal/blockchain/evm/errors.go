package evm

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"tokendesk/internal/ledger"
)

// wrapError converts an RPC failure into a ledger error, decoding revert data
// into a reason when the node returned any
func (t *Token) wrapError(op string, err error) *ledger.Error {
	lerr := &ledger.Error{Op: op, Err: err}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := revertData(dataErr.ErrorData()); ok {
			lerr.Reason = t.decodeRevert(data)
		}
	}
	if lerr.Reason == "" {
		lerr.Reason = reasonFromMessage(err.Error())
	}

	return lerr
}

// decodeRevert turns revert data into a readable reason: Error(string) payloads
// yield their message and token custom errors are rendered with their arguments
func (t *Token) decodeRevert(data []byte) string {
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	if len(data) < 4 {
		return ""
	}

	for name, abiErr := range t.abi.Errors {
		abiErr := abiErr
		if !bytes.Equal(abiErr.ID[:4], data[:4]) {
			continue
		}
		values, err := abiErr.Inputs.Unpack(data[4:])
		if err != nil {
			return name
		}
		args := make([]string, len(values))
		for i, v := range values {
			args[i] = fmt.Sprint(v)
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
	}

	return ""
}

func revertData(v interface{}) ([]byte, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	data, err := hexutil.Decode(s)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// reasonFromMessage extracts the reason nodes embed as
// "execution reverted: <reason>" when no revert data is returned
func reasonFromMessage(msg string) string {
	const marker = "execution reverted: "
	if i := strings.Index(msg, marker); i >= 0 {
		return strings.TrimSpace(msg[i+len(marker):])
	}
	return ""
}
