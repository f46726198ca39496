package models

// Requests and responses for the markets HTTP endpoints.

type BoardRequest struct {
	Feed  string `param:"feed" json:"feed" validate:"required,feed"`
	Order string `query:"order" json:"order" default:"newest" validate:"oneof=newest oldest"`
}

type FeedRequest struct {
	Feed string `param:"feed" json:"feed" validate:"required,feed"`
}

type MarketStatus struct {
	Market
	Active bool `json:"active"`
}

type MarketsResponse struct {
	Mode    string         `json:"mode"`
	Markets []MarketStatus `json:"markets"`
}
