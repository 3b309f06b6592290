package transfer

type UgcPostRequest struct {
	Author          string             `json:"author"`
	LifecycleState  string             `json:"lifecycleState"`
	SpecificContent UgcSpecificContent `json:"specificContent"`
	Visibility      UgcVisibility      `json:"visibility"`
}

type UgcSpecificContent struct {
	ShareContent UgcShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type UgcShareContent struct {
	ShareCommentary    UgcText `json:"shareCommentary"`
	ShareMediaCategory string  `json:"shareMediaCategory"`
}

type UgcText struct {
	Text string `json:"text"`
}

type UgcVisibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

type UgcPostResponse struct {
	ID string `json:"id"`
}

type LinkedinErrorResponse struct {
	Message          string `json:"message"`
	Status           int    `json:"status"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
}

type LinkedinUserInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}
