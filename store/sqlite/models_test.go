package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/types"
)

func TestMetadataEncoding(t *testing.T) {
	assert.Equal(t, "{}", encodeMetadata(nil))
	assert.Equal(t, `{"room":"204"}`, encodeMetadata(map[string]string{"room": "204"}))

	meta, err := decodeMetadata("")
	require.NoError(t, err)
	assert.Empty(t, meta)

	meta, err = decodeMetadata(`{"room":"204"}`)
	require.NoError(t, err)
	assert.Equal(t, "204", meta["room"])

	_, err = decodeMetadata("not json")
	assert.Error(t, err)
}

func TestInvoiceModelMetadata(t *testing.T) {
	inv := &invoice.Invoice{
		ID:          id.NewInvoiceID(),
		Currency:    "usd",
		TotalAmount: types.USD(22000),
		Status:      invoice.StatusUnpaid,
		Metadata:    map[string]string{"source": "front-desk"},
	}

	back, err := fromInvoiceModel(toInvoiceModel(inv))
	require.NoError(t, err)
	assert.Equal(t, "front-desk", back.Metadata["source"])
	assert.True(t, back.TotalAmount.Equal(types.USD(22000)))
}
