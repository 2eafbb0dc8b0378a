package tracing

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/ordermonitor/config"
)

func TestDisabledTracerIsSafe(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{AppName: "Order Monitor"})
	require.NoError(t, err)

	txn := tracer.StartTransaction("orders-page")
	assert.Nil(t, txn)
	assert.Nil(t, tracer.Application())

	span := tracer.StartSpan("cache-lookup", txn)
	require.NotNil(t, span)
	span.End()

	tracer.AddAttribute(txn, "page", 1)
	tracer.RecordError(txn, errors.New("boom"))
	tracer.EndTransaction(txn)
	tracer.Close()
}
