package media

import (
	"encoding/json"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  *ffprobeFormat  `json:"format"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     *int   `json:"width"`
	Height    *int   `json:"height"`
}

type ffprobeFormat struct {
	Duration string       `json:"duration"`
	Tags     *ffprobeTags `json:"tags"`
}

type ffprobeTags struct {
	CreationTime      string `json:"creation_time"`
	QuickTimeCreated  string `json:"com.apple.quicktime.creationdate"`
	Location          string `json:"location"`
	QuickTimeLocation string `json:"com.apple.quicktime.location.ISO6709"`
}

// extractVideoMetadata shells out to ffprobe. Any failure downgrades to a
// partial record; a video with an unreadable container is still importable
// with file-level facts.
func extractVideoMetadata(filePath string) *Metadata {
	meta := &Metadata{}

	out, err := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	).Output()
	if err != nil {
		log.Printf("metadata: ffprobe failed for %s: %v", filePath, err)
		return meta
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		log.Printf("metadata: failed to parse ffprobe output for %s: %v", filePath, err)
		return meta
	}

	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			meta.Width = stream.Width
			meta.Height = stream.Height
			if stream.CodecName != "" {
				codec := stream.CodecName
				meta.VideoCodec = &codec
			}
			break
		}
	}

	if probe.Format != nil {
		if probe.Format.Duration != "" {
			if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
				meta.DurationSeconds = &dur
			}
		}
		if tags := probe.Format.Tags; tags != nil {
			applyVideoTags(meta, tags, filePath)
		}
	}

	return meta
}

func applyVideoTags(meta *Metadata, tags *ffprobeTags, filePath string) {
	creation := tags.CreationTime
	if creation == "" {
		creation = tags.QuickTimeCreated
	}
	if creation != "" {
		if dt, err := time.Parse(time.RFC3339, strings.Replace(creation, "Z", "+00:00", 1)); err == nil {
			ts := dt.Unix()
			meta.TakenAt = &ts
		}
	}

	location := tags.Location
	if location == "" {
		location = tags.QuickTimeLocation
	}
	if location != "" {
		if lat, lon, ok := parseISO6709(location); ok {
			if validCoordinates(lat, lon) {
				meta.GPSLatitude = &lat
				meta.GPSLongitude = &lon
			} else {
				log.Printf("metadata: discarding out-of-range coordinates (%f, %f) for %s", lat, lon, filePath)
			}
		}
	}
}

// parseISO6709 reads coordinates shaped like "+37.7749-122.4194+010.000/"
func parseISO6709(location string) (float64, float64, bool) {
	location = strings.TrimSuffix(location, "/")
	if len(location) < 2 {
		return 0, 0, false
	}

	splitIdx := 0
	for i := 1; i < len(location); i++ {
		if location[i] == '+' || location[i] == '-' {
			splitIdx = i
			break
		}
	}
	if splitIdx == 0 {
		return 0, 0, false
	}

	latStr := location[:splitIdx]
	lonStr := location[splitIdx:]

	// strip a trailing altitude component
	for i := 1; i < len(lonStr); i++ {
		if lonStr[i] == '+' || lonStr[i] == '-' {
			lonStr = lonStr[:i]
			break
		}
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
