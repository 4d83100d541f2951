package entity

// Request - тело запросов на создание и обновление.
type Request struct {
	Data Payload `json:"data" doc:"Entity fields"`
}

// ListResponse - тело ответа со списком коллекции.
type ListResponse struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}
