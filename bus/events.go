package bus

// Kind names an event on the bus. Values match the names used by the web UI.
type Kind string

const (
	KindUploadFile   Kind = "uploadFile"
	KindReloadScene  Kind = "reloadScene"
	KindLoadScene    Kind = "loadScene"
	KindDeleteObject Kind = "deleteObject"

	KindSuccess         Kind = "success"
	KindInfo            Kind = "info"
	KindCityModelLoaded Kind = "cityModelLoaded"
	KindObjectSelected  Kind = "objectSelected"
)

// Event is anything that can be published.
type Event interface {
	Kind() Kind
}

// UploadFile asks the viewer to send a city model to the server and show it.
type UploadFile struct {
	Content []byte `json:"content"`
	ModelID string `json:"modelId"`
}

type ReloadScene struct{}

type LoadScene struct {
	ModelID string `json:"modelId"`
}

type DeleteObject struct {
	UID string `json:"uid"`
}

type Success struct {
	Message string `json:"message"`
}

type Info struct {
	Message string `json:"message"`
}

type CityModelLoaded struct {
	ModelID string `json:"modelId"`
}

// ObjectSelected reports the object a click picked.
type ObjectSelected struct {
	UID string `json:"uid"`
}

func (UploadFile) Kind() Kind      { return KindUploadFile }
func (ReloadScene) Kind() Kind     { return KindReloadScene }
func (LoadScene) Kind() Kind       { return KindLoadScene }
func (DeleteObject) Kind() Kind    { return KindDeleteObject }
func (Success) Kind() Kind         { return KindSuccess }
func (Info) Kind() Kind            { return KindInfo }
func (CityModelLoaded) Kind() Kind { return KindCityModelLoaded }
func (ObjectSelected) Kind() Kind  { return KindObjectSelected }

// Outbound lists the kinds the viewer emits for UI consumers.
var Outbound = []Kind{KindSuccess, KindInfo, KindCityModelLoaded, KindObjectSelected}
