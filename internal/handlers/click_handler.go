package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"merch_shop/internal/fiscal"
	"merch_shop/internal/models"
	"merch_shop/internal/money"
	"merch_shop/internal/services"
	"merch_shop/pkg/click"

	"github.com/gin-gonic/gin"
)

// Gateway protocol result codes.
const (
	codeSuccess       = "0"
	codeBadSignature  = "-1"
	codeAlreadyPaid   = "-4"
	codeOrderNotFound = "-5"
	codeTransMismatch = "-6"
	codeMissingField  = "-8"
	codeInvoiceFailed = "-9"
	codeFiscalFailed  = "-10"
)

// ClickHandler terminates the gateway's two-phase webhook protocol.
type ClickHandler struct {
	orderService services.OrderService
	secretKey    string
}

func NewClickHandler(orderService services.OrderService, secretKey string) *ClickHandler {
	return &ClickHandler{orderService: orderService, secretKey: secretKey}
}

type prepareResponse struct {
	ClickTransID      string `json:"click_trans_id"`
	MerchantTransID   string `json:"merchant_trans_id"`
	MerchantPrepareID string `json:"merchant_prepare_id"`
	Error             string `json:"error"`
	ErrorNote         string `json:"error_note"`
}

type completeResponse struct {
	ClickTransID      string            `json:"click_trans_id"`
	MerchantTransID   string            `json:"merchant_trans_id"`
	MerchantConfirmID string            `json:"merchant_confirm_id"`
	Error             string            `json:"error"`
	ErrorNote         string            `json:"error_note"`
	FiscalItems       []fiscal.LineItem `json:"fiscal_items,omitempty"`
}

// HandlePrepare is the reservation phase: authenticate, map to an order,
// hand out the prepare id. Replies are always HTTP 200; the gateway reads
// the error field.
func (h *ClickHandler) HandlePrepare(c *gin.Context) {
	fields := webhookFields(c)

	missing := firstMissing(fields, "click_trans_id", "service_id", "merchant_trans_id", "amount", "action", "sign_time", "sign_string")
	if missing != "" {
		c.JSON(http.StatusOK, prepareResponse{Error: codeMissingField, ErrorNote: "Missing field: " + missing})
		return
	}
	if fields["action"] != "0" {
		c.JSON(http.StatusOK, prepareResponse{Error: codeMissingField, ErrorNote: "Invalid action for prepare: " + fields["action"]})
		return
	}

	params := click.PrepareParams{
		ClickTransID:    fields["click_trans_id"],
		ServiceID:       fields["service_id"],
		MerchantTransID: fields["merchant_trans_id"],
		Amount:          fields["amount"],
		Action:          fields["action"],
		SignTime:        fields["sign_time"],
		SignString:      fields["sign_string"],
	}
	if !click.VerifyPrepare(params, h.secretKey) {
		c.JSON(http.StatusOK, prepareResponse{
			ClickTransID:    params.ClickTransID,
			MerchantTransID: params.MerchantTransID,
			Error:           codeBadSignature,
			ErrorNote:       "Bad signature",
		})
		return
	}

	amount, err := money.ParseAmount(params.Amount)
	if err != nil {
		c.JSON(http.StatusOK, prepareResponse{Error: codeMissingField, ErrorNote: "Invalid amount"})
		return
	}

	prepareID, err := h.orderService.OnGatewayPrepare(params.MerchantTransID, amount)
	if err != nil {
		code, note := protocolError(err)
		c.JSON(http.StatusOK, prepareResponse{
			ClickTransID:    params.ClickTransID,
			MerchantTransID: params.MerchantTransID,
			Error:           code,
			ErrorNote:       note,
		})
		return
	}

	c.JSON(http.StatusOK, prepareResponse{
		ClickTransID:      params.ClickTransID,
		MerchantTransID:   params.MerchantTransID,
		MerchantPrepareID: prepareID,
		Error:             codeSuccess,
		ErrorNote:         "Success",
	})
}

// HandleComplete is the capture phase. The state machine guarantees the
// side effects behind it run at most once.
func (h *ClickHandler) HandleComplete(c *gin.Context) {
	fields := webhookFields(c)

	missing := firstMissing(fields, "click_trans_id", "service_id", "merchant_trans_id", "merchant_prepare_id", "amount", "action", "sign_time", "sign_string")
	if missing != "" {
		c.JSON(http.StatusOK, completeResponse{Error: codeMissingField, ErrorNote: "Missing field: " + missing})
		return
	}
	if fields["action"] != "1" {
		c.JSON(http.StatusOK, completeResponse{Error: codeMissingField, ErrorNote: "Invalid action for complete: " + fields["action"]})
		return
	}

	params := click.CompleteParams{
		PrepareParams: click.PrepareParams{
			ClickTransID:    fields["click_trans_id"],
			ServiceID:       fields["service_id"],
			MerchantTransID: fields["merchant_trans_id"],
			Amount:          fields["amount"],
			Action:          fields["action"],
			SignTime:        fields["sign_time"],
			SignString:      fields["sign_string"],
		},
		MerchantPrepareID: fields["merchant_prepare_id"],
	}
	if !click.VerifyComplete(params, h.secretKey) {
		c.JSON(http.StatusOK, completeResponse{
			ClickTransID:    params.ClickTransID,
			MerchantTransID: params.MerchantTransID,
			Error:           codeBadSignature,
			ErrorNote:       "Bad signature",
		})
		return
	}

	amount, err := money.ParseAmount(params.Amount)
	if err != nil {
		c.JSON(http.StatusOK, completeResponse{Error: codeMissingField, ErrorNote: "Invalid amount"})
		return
	}

	result, err := h.orderService.OnGatewayComplete(params.ClickTransID, params.MerchantTransID, params.MerchantPrepareID, amount)
	if err != nil {
		code, note := protocolError(err)
		c.JSON(http.StatusOK, completeResponse{
			ClickTransID:    params.ClickTransID,
			MerchantTransID: params.MerchantTransID,
			Error:           code,
			ErrorNote:       note,
		})
		return
	}

	c.JSON(http.StatusOK, completeResponse{
		ClickTransID:      params.ClickTransID,
		MerchantTransID:   params.MerchantTransID,
		MerchantConfirmID: params.MerchantPrepareID,
		Error:             codeSuccess,
		ErrorNote:         "Success",
		FiscalItems:       result.Items,
	})
}

type createInvoiceRequest struct {
	MerchantTransID string `json:"merchant_trans_id" form:"merchant_trans_id"`
}

// HandleCreateInvoice lets an operator re-run invoice creation for an
// order whose first invoice call failed; the confirm path reuses the
// already-assigned transaction id.
func (h *ClickHandler) HandleCreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBind(&req); err != nil || req.MerchantTransID == "" {
		c.JSON(http.StatusOK, gin.H{"error": codeMissingField, "error_note": "Missing field: merchant_trans_id"})
		return
	}

	order, err := h.orderService.GetOrderByTransactionID(req.MerchantTransID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": codeOrderNotFound, "error_note": "Order not found"})
		return
	}

	confirmed, err := h.orderService.ClientConfirm(order.ID)
	if err != nil {
		code, note := protocolError(err)
		c.JSON(http.StatusOK, gin.H{"error": code, "error_note": note})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"error":             codeSuccess,
		"error_note":        "Success",
		"merchant_trans_id": req.MerchantTransID,
		"payment_url":       confirmed.PaymentURL,
	})
}

// webhookFields flattens the request into raw string fields, accepting a
// JSON body, a form body or the query string; body values win over query
// values. Numbers keep their wire form so signatures verify byte for byte.
func webhookFields(c *gin.Context) map[string]string {
	fields := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	if c.ContentType() == "application/json" {
		var body map[string]interface{}
		decoder := json.NewDecoder(c.Request.Body)
		decoder.UseNumber()
		if err := decoder.Decode(&body); err == nil {
			for key, value := range body {
				switch v := value.(type) {
				case string:
					fields[key] = v
				case json.Number:
					fields[key] = v.String()
				}
			}
		}
		return fields
	}

	if err := c.Request.ParseForm(); err == nil {
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				fields[key] = values[0]
			}
		}
	}
	return fields
}

func firstMissing(fields map[string]string, names ...string) string {
	for _, name := range names {
		if fields[name] == "" {
			return name
		}
	}
	return ""
}

// protocolError maps lifecycle errors onto gateway result codes.
func protocolError(err error) (string, string) {
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		return codeOrderNotFound, "Order not found"
	case errors.Is(err, models.ErrAlreadyPaid):
		return codeAlreadyPaid, "Already paid"
	case errors.Is(err, models.ErrTransactionMismatch):
		return codeTransMismatch, "Transaction does not exist"
	case errors.Is(err, models.ErrUnknownProduct), errors.Is(err, models.ErrInvalidInput):
		return codeFiscalFailed, "Fiscal data error"
	case errors.Is(err, models.ErrGateway):
		return codeInvoiceFailed, "Gateway call failed"
	case errors.Is(err, models.ErrInvalidTransition):
		return codeTransMismatch, "Transaction does not exist"
	}
	return codeInvoiceFailed, "Internal error"
}
