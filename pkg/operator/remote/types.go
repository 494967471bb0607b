package remote

const ApplyPath = "/apply"

type ApplyRequest struct {
	Image []byte
}

type ApplyResponse struct {
	Image []byte
}
