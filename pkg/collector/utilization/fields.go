package utilization

import (
	"fmt"

	"github.com/tidwall/gjson"
	"k8s.io/apimachinery/pkg/util/sets"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
)

func missingField(endpoint, path string) error {
	return fserrors.WrapWithContext(fserrors.ErrCodeInvalidPayload,
		fmt.Sprintf("%s response is missing %s", endpoint, path), nil,
		map[string]any{"endpoint": endpoint, "path": path})
}

// array returns the elements at path, which must be a JSON array.
func array(endpoint string, doc gjson.Result, path string) ([]gjson.Result, error) {
	v := doc.Get(path)
	if !v.IsArray() {
		return nil, missingField(endpoint, path)
	}
	return v.Array(), nil
}

// number reads a numeric field of the i-th record.
func number(endpoint string, rec gjson.Result, i int, path string) (float64, error) {
	v := rec.Get(path)
	if v.Type != gjson.Number {
		return 0, missingField(endpoint, fmt.Sprintf("data.%d.%s", i, path))
	}
	return v.Float(), nil
}

func uniqueWallets(nodes []gjson.Result) (int, error) {
	wallets := sets.New[string]()
	for i, n := range nodes {
		addr := n.Get("payment_address")
		if addr.Type != gjson.String {
			return 0, missingField(EndpointNodeList, fmt.Sprintf("data.%d.payment_address", i))
		}
		wallets.Insert(addr.String())
	}
	return wallets.Len(), nil
}
