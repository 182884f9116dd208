package app

type ResultView struct {
	Message string `json:"message"`
}

type SubscriptionListView struct {
	ChannelID string   `json:"channel_id"`
	Count     int      `json:"count"`
	Handles   []string `json:"handles"`
}

func (view SubscriptionListView) From(channelID string, handles []string) SubscriptionListView {
	return SubscriptionListView{
		ChannelID: channelID,
		Count:     len(handles),
		Handles:   handles,
	}
}
