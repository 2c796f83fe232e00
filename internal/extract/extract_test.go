package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ofarias/chatpagos/internal/ledger"
)

func extractPayments(t *testing.T, text string) *Result {
	t.Helper()
	res, err := Extract(strings.NewReader(text), ModePayments, "chat.txt")
	require.NoError(t, err)
	return res
}

func TestExtractSingleRecord(t *testing.T) {
	t.Parallel()
	text := `[24/10/25, 10:51:52] Uzziel: Grupo BIENVENIDOS
ID 000094
Pago 12921
Ahorro 1293
Sucursal Ixtapaluca
`
	res := extractPayments(t, text)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)

	r := res.Records[0]
	require.Equal(t, "000094", r.GroupID)
	require.Equal(t, "BIENVENIDOS", r.GroupName)
	require.Equal(t, "IXTAPALUCA", r.Branch)
	require.Equal(t, "24/10/25", r.Date)
	require.Equal(t, "10:51:52", r.Time)
	require.True(t, r.Payment.Equal(decimal.RequireFromString("12921")))
	require.True(t, r.Savings.Equal(decimal.RequireFromString("1293")))
	require.True(t, r.Total().Equal(decimal.RequireFromString("14214")))
	require.Equal(t, "chat.txt", r.SourceFile)
	require.False(t, r.Confirmed)
}

func TestExtractColonLabelsAndVariants(t *testing.T) {
	t.Parallel()
	text := `[24/10/25, 12:15:00] Marta: Grupo: Los de Abajo
ID: 121
Pago: $5,000.50
Numero de pago: 4
Sucursal: chalco
`
	res := extractPayments(t, text)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)

	r := res.Records[0]
	require.Equal(t, "000121", r.GroupID)
	require.Equal(t, "LOS DE ABAJO", r.GroupName)
	require.Equal(t, "CHALCO", r.Branch)
	require.True(t, r.Payment.Equal(decimal.RequireFromString("5000.5")))
	require.True(t, r.Savings.IsZero())
	require.Equal(t, "4", r.PaymentNumber)
}

func TestExtractMultiplePaymentsPerBlock(t *testing.T) {
	t.Parallel()
	text := `[25/10/25, 09:00:00] Uzziel: ID 77
Pago 300
Pago 450
Ahorro 50
N pago 9
`
	res := extractPayments(t, text)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 2)

	first, second := res.Records[0], res.Records[1]
	require.True(t, first.Payment.Equal(decimal.RequireFromString("300")))
	require.True(t, first.Savings.IsZero())
	require.Empty(t, first.PaymentNumber)

	require.True(t, second.Payment.Equal(decimal.RequireFromString("450")))
	require.True(t, second.Savings.Equal(decimal.RequireFromString("50")))
	require.Equal(t, "9", second.PaymentNumber)

	require.Equal(t, first.Key().GroupID, second.Key().GroupID)
	require.Equal(t, "000077", first.GroupID)
}

func TestExtractSkipsNoise(t *testing.T) {
	t.Parallel()
	text := `mensajes sueltos antes del primer encabezado
[24/10/25, 09:00:00] BIENVENIDOS: Los mensajes y las llamadas están cifrados de extremo a extremo.
[24/10/25, 11:02:10] Ana: buenos días a todos
[24/10/25, 11:03:00] Ana: <imagen omitida>
[24/10/25, 11:10:00] Uzziel: ID 94
Pago 100
`
	res := extractPayments(t, text)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)
	require.Equal(t, 4, res.Blocks)
	require.Equal(t, 3, res.Skipped)
}

func TestExtractBlockErrors(t *testing.T) {
	t.Parallel()
	text := `[24/10/25, 10:00:00] Uzziel: ID 94
Pago abc
[24/10/25, 10:05:00] Uzziel: Pago 500
[24/10/25, 10:10:00] Uzziel: ID 12a
Pago 500
[24/10/25, 10:15:00] Uzziel: ID 94
Pago 500
Numero de pago: cuatro
[24/10/25, 10:20:00] Uzziel: ID 95
Pago 750
`
	res := extractPayments(t, text)
	require.Len(t, res.Errors, 4)
	require.Len(t, res.Records, 1)
	require.Equal(t, "000095", res.Records[0].GroupID)

	reasons := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		reasons = append(reasons, e.Reason)
	}
	require.Contains(t, reasons, "invalid amount")
	require.Contains(t, reasons, "missing group id")
	require.Contains(t, reasons, "invalid group id")
	require.Contains(t, reasons, "invalid payment number")

	require.Equal(t, 2, res.Errors[0].Line)
	require.Contains(t, res.Errors[0].Error(), "invalid amount")
}

func TestExtractSavingsBeforePayment(t *testing.T) {
	t.Parallel()
	text := `[24/10/25, 10:00:00] Uzziel: ID 94
Ahorro 200
Pago 500
`
	res := extractPayments(t, text)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)
	require.True(t, res.Records[0].Savings.Equal(decimal.RequireFromString("200")))
	require.True(t, res.Records[0].Total().Equal(decimal.RequireFromString("700")))

	multi := `[24/10/25, 11:00:00] Uzziel: ID 94
Ahorro 10
Pago 100
Pago 200
Ahorro 20
`
	res = extractPayments(t, multi)
	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 2)
	require.True(t, res.Records[0].Savings.Equal(decimal.RequireFromString("10")))
	require.True(t, res.Records[1].Savings.Equal(decimal.RequireFromString("20")))
}

func TestExtractIDWithoutPaymentIsError(t *testing.T) {
	t.Parallel()
	text := `[24/10/25, 10:00:00] Uzziel: ID 94
Número de pago 2
`
	res := extractPayments(t, text)
	require.Empty(t, res.Records)
	require.Zero(t, res.Skipped)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "missing payment amount", res.Errors[0].Reason)
	require.Equal(t, 1, res.Errors[0].Line)
}

func TestExtractNewestTimestamp(t *testing.T) {
	t.Parallel()
	text := `[24/10/25, 10:00:00] Uzziel: ID 94
Pago 100
[26/10/25, 08:30:00] Ana: charla
[25/10/25, 23:59:59] Uzziel: ID 94
Pago 200
`
	res := extractPayments(t, text)
	want := time.Date(2025, time.October, 26, 8, 30, 0, 0, time.UTC)
	require.Equal(t, want, res.Newest)
}

func TestExtractConfirmations(t *testing.T) {
	t.Parallel()
	// Confirmation exports are forwarded payment messages; any block with
	// an id is a marker, with or without amount fields.
	text := `[25/10/25, 18:40:12] Sucursal: Grupo BIENVENIDOS
ID 000094
Pago 12921
[25/10/25, 18:41:00] Sucursal: gracias
[25/10/25, 18:42:00] Sucursal: Confirmado
[25/10/25, 18:43:00] Sucursal: ID 121
[25/10/25, 18:44:00] Sucursal: ID 12a
Pago 100
`
	res, err := Extract(strings.NewReader(text), ModeConfirmations, "conf.txt")
	require.NoError(t, err)
	require.Len(t, res.Markers, 2)
	require.Len(t, res.Errors, 1)
	require.Equal(t, 2, res.Skipped)

	require.Equal(t, ledger.Key{GroupID: "000094", Date: "25/10/25", Time: "18:40:12"}, res.Markers[0].Key)
	require.Equal(t, "Sucursal", res.Markers[0].Sender)
	require.Equal(t, ledger.Key{GroupID: "000121", Date: "25/10/25", Time: "18:43:00"}, res.Markers[1].Key)
	require.Equal(t, "invalid group id", res.Errors[0].Reason)
}

func TestExtractEmptyInput(t *testing.T) {
	t.Parallel()
	res := extractPayments(t, "")
	require.Empty(t, res.Records)
	require.Empty(t, res.Errors)
	require.Zero(t, res.Blocks)
	require.True(t, res.Newest.IsZero())
}
