package health

type Input struct{}

type Output struct {
	Body Response
}

type Response struct {
	Status string `json:"status" example:"ok" doc:"Health status of the service"`
	Time   string `json:"time" doc:"Server time, RFC 3339"`
}
