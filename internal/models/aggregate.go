package models

type UserTotal struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// Summary is the landing page data
type Summary struct {
	Observations int         `json:"observations"`
	Snapshots    int         `json:"snapshots"`
	Percent      float64     `json:"percent"`
	Leader       string      `json:"leader"`
	Users        []UserTotal `json:"users"`
}

type SpeciesTally struct {
	Species Species `json:"species"`
	Count   int     `json:"count"`
}
