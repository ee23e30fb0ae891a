package respond

const (
	HttpsCodeSuccess = 0
	HttpsCodeError   = 10001
	HttpsCodeParam   = 10002 // 参数错误
	HttpsCodeState   = 10003 // no conversation open or not signed in
	HttpsCodeAlert   = 10004 // user-visible attachment / location failure

	RespMessageSuccess = "success"
)

// Message 通用响应结构
type Message struct {
	Code           int         `json:"code"`
	Message        string      `json:"message"`
	ProcessingTime int64       `json:"processingTime"` // 处理时间（毫秒）
	Data           interface{} `json:"data"`
}

// Alert is the payload of HttpsCodeAlert responses.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func RespSuccess(data interface{}, time int64) Message {
	return Message{
		Code:           HttpsCodeSuccess,
		Message:        RespMessageSuccess,
		ProcessingTime: time,
		Data:           data,
	}
}

func RespErr(err error, time int64, code int) Message {
	if code == 0 {
		code = HttpsCodeError
	}
	return Message{
		Code:           code,
		Message:        err.Error(),
		ProcessingTime: time,
		Data:           nil,
	}
}

func RespAlert(title, message string, time int64) Message {
	return Message{
		Code:           HttpsCodeAlert,
		Message:        message,
		ProcessingTime: time,
		Data:           Alert{Title: title, Message: message},
	}
}
