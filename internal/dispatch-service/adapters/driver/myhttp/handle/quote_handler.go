package handle

import (
	"net/http"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/services/pricing"
	"haul-dispatch/internal/mylogger"
)

type QuoteHandler struct {
	log mylogger.Logger
}

func NewQuoteHandler(log mylogger.Logger) *QuoteHandler {
	return &QuoteHandler{log: log}
}

func (qh *QuoteHandler) CreateQuote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := model.QuoteInput{}
		if err := decode(r, &req, false); err != nil {
			writeError(w, qh.log, err)
			return
		}

		quote, err := pricing.Calculate(req)
		if err != nil {
			writeError(w, qh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, quote)
	}
}
