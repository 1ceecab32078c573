package respond

const (
	HttpsCodeSuccess  = 0
	HttpsCodeError    = 40000
	HttpsCodeNotFound = 40400
	HttpsCodeInvalid  = 40001
	HttpsCodeInternal = 50000

	RespMessageSuccess = "success"
)
