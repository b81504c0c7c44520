package constants

// Messages sent by the content source.
const (
	RemoteMessageNotRegistered = "Please Add This Screen"
	RemoteMessageNoPlaylist    = "Please Add Playlist"
	RemoteMessageNoContent     = "Please Add Content To Playlist"
	RemoteMessageDataFound     = "Data found successfully"
)

// Classification messages, one per outcome.
const (
	MessageUnchanged        = "No changes needed"
	MessageNotRegistered    = "Screen not registered. Please add this screen in the admin panel."
	MessageNoPlaylist       = "No playlist assigned to this screen."
	MessageNoContent        = "No content in the assigned playlist."
	MessageEmptyData        = "Playlist returned no content items."
	MessageContentAvailable = "Content available for display"
	MessageUnknownResponse  = "Unknown response from server"
)

// Status lines shown while no media is playing.
const (
	StatusInitializing         = "Initializing..."
	StatusChecking             = "Checking for content..."
	StatusRegisterScreenFormat = "This screen needs to be registered. Please add screen code %q in the admin panel."
	StatusAddContentFormat     = "%s Please add content for screen code %q in the admin panel."
	StatusFetchFailedFormat    = "Failed to fetch content: %v"
	StatusProcessFailedFormat  = "Failed to process content: %v"
	StatusInitFailedFormat     = "Failed to initialize device: %v"
	StatusOffline              = "Device is offline, showing cached content"
	StatusProgressFormat       = "Processing %d / %d items"
)
