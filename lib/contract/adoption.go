package contract

import (
	"context"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
)

// Adoption contract names.
const (
	AdoptionName   = "Adoption"
	AdoptedEvent   = "Adopted"
	methodAdopt    = "adopt"
	methodAdopters = "getAdopters"
)

// Adoption is the instance of the Adoption contract.
type Adoption struct {
	*Instance
}

// NewAdoption binds the Adoption contract described by d.
func NewAdoption(d Descriptor, b Backend) *Adoption {
	return &Adoption{Instance: Bind(d, b)}
}

// Adopters returns the adopter of every pet, indexed by pet id. The zero address means not adopted.
func (a *Adoption) Adopters(ctx context.Context) ([]common.Address, error) {
	res, err := a.Call(ctx, methodAdopters)
	if err != nil {
		return nil, err
	}

	if len(res) != 1 {
		return nil, fmt.Errorf("%s.%s returned %d values", a.Name, methodAdopters, len(res))
	}

	// the result is a fixed size array of addresses
	v := reflect.ValueOf(res[0])
	if v.Kind() != reflect.Array && v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s.%s returned %T", a.Name, methodAdopters, res[0])
	}

	adopters := make([]common.Address, v.Len())

	for i := range adopters {
		addr, ok := v.Index(i).Interface().(common.Address)
		if !ok {
			return nil, fmt.Errorf("%s.%s returned %T", a.Name, methodAdopters, res[0])
		}

		adopters[i] = addr
	}

	return adopters, nil
}

// Adopt adopts pet petID on behalf of account from, waiting for the transaction to be mined.
func (a *Adoption) Adopt(ctx context.Context, petID uint64, from common.Address) (*etypes.Receipt, error) {
	return a.Transact(ctx, from, methodAdopt, new(big.Int).SetUint64(petID))
}
