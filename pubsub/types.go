package pubsub

// TopicPrefix identifies channel point redemption topics.
const TopicPrefix = "community-points-channel-v1."

// envelope is the outer frame of every inbound pubsub message. The payload
// in Data.Message is itself a JSON document.
type envelope struct {
	Type string `json:"type"`
	Data struct {
		Topic   string `json:"topic"`
		Message string `json:"message"`
	} `json:"data"`
}

type listenRequest struct {
	Type string     `json:"type"`
	Data listenData `json:"data"`
}

type listenData struct {
	Topics    []string `json:"topics"`
	AuthToken string   `json:"auth_token"`
}

// redeem is a channel point redemption payload, reduced to the fields the
// bot consumes.
type redeem struct {
	Type string `json:"type"`
	Data struct {
		Redemption struct {
			User struct {
				Login string `json:"login"`
			} `json:"user"`
			Reward struct {
				Title               string `json:"title"`
				IsUserInputRequired bool   `json:"is_user_input_required"`
			} `json:"reward"`
			UserInput string `json:"user_input"`
		} `json:"redemption"`
	} `json:"data"`
}
