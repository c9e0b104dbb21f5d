package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"storefront-service/internal/offers"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

const maxOfferBody = 5 * 1024

func (h *Handler) bindOffer(c *gin.Context) (offers.NewOffer, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxOfferBody)

	var no offers.NewOffer
	if err := c.ShouldBindJSON(&no); err != nil {
		badRequest(c, "Invalid JSON payload", err)
		return no, false
	}
	if err := h.validate.Struct(no); err != nil {
		badRequest(c, validationMessage(err), err)
		return no, false
	}
	return no, true
}

func (h *Handler) CreateOffer(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	no, ok := h.bindOffer(c)
	if !ok {
		return
	}
	o, err := h.offers.InsertOffer(c.Request.Context(), no)
	if err != nil {
		slog.Error("error in inserting the offer", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Offer Creation Failed"})
		return
	}

	slog.Info("offer created", slog.String(logkey.TraceID, traceId), slog.String("OfferID", o.ID))
	c.JSON(http.StatusCreated, o)
}

// ListActiveOffers is public; the storefront shows these as banners.
func (h *Handler) ListActiveOffers(c *gin.Context) {
	h.listOffers(c, true)
}

func (h *Handler) ListAllOffers(c *gin.Context) {
	h.listOffers(c, false)
}

func (h *Handler) listOffers(c *gin.Context, activeOnly bool) {
	list, err := h.offers.ListOffers(c.Request.Context(), activeOnly)
	if err != nil {
		slog.Error("error in listing offers", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch offers"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) UpdateOffer(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	offerID := c.Param("id")

	no, ok := h.bindOffer(c)
	if !ok {
		return
	}
	o, err := h.offers.UpdateOffer(c.Request.Context(), offerID, no)
	if err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Offer not found"})
			return
		}
		slog.Error("error in updating offer", slog.String(logkey.TraceID, traceId),
			slog.String("OfferID", offerID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to update offer"})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOffer(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	offerID := c.Param("id")

	if err := h.offers.DeleteOffer(c.Request.Context(), offerID); err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Offer not found"})
			return
		}
		slog.Error("error in deleting offer", slog.String(logkey.TraceID, traceId),
			slog.String("OfferID", offerID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete offer"})
		return
	}

	slog.Info("offer deleted", slog.String(logkey.TraceID, traceId), slog.String("OfferID", offerID))
	c.JSON(http.StatusOK, gin.H{"message": "Offer removed"})
}
