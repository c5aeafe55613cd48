package api

// ErrorCode values are part of the wire contract with the price processor,
// which decodes them by ordinal. Append only.
type ErrorCode int

const (
	MissingParam ErrorCode = iota
	ProductNotFound
	InvalidDomain
	ConnectionError
	PriceParsingError
	ScrapingError
)

func (c ErrorCode) String() string {
	switch c {
	case MissingParam:
		return "MISSING_PARAM"
	case ProductNotFound:
		return "PRODUCT_NOT_FOUND"
	case InvalidDomain:
		return "INVALID_DOMAIN"
	case ConnectionError:
		return "CONNECTION_ERROR"
	case PriceParsingError:
		return "PRICE_PARSING_ERROR"
	case ScrapingError:
		return "SCRAPING_ERROR"
	default:
		return "UNKNOWN"
	}
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	ErrorCode ErrorCode `json:"errorCode"`
	Message   string    `json:"message"`
}
