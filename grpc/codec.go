// Package pulsegrpc is the gRPC ledger gateway. Messages are the
// cramberry-tagged structs from pulse/types; there is no generated
// protobuf code.
package pulsegrpc

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
)

const codecName = "cramberry"

// CramberryCodec is the wire codec for LedgerService. Both ends must
// dial and serve with it; see ForceCodec in Dial.
type CramberryCodec struct{}

func (CramberryCodec) Marshal(v any) ([]byte, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("pulsegrpc: encode %T: %w", v, err)
	}
	return data, nil
}

func (CramberryCodec) Unmarshal(data []byte, v any) error {
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("pulsegrpc: decode %T: %w", v, err)
	}
	return nil
}

func (CramberryCodec) Name() string { return codecName }

func init() { encoding.RegisterCodec(CramberryCodec{}) }
