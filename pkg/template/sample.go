package template

// SampleJob returns an example job document for `reelstencil init`.
func SampleJob() string {
	return `{
  "video_path": "background.mp4",
  "output_path": "reel.mp4",
  "image_paths": ["photo1.jpg", "photo2.jpg", "photo3.jpg", "photo4.jpg"],
  "template_vars": {
    "bibId": "123456",
    "runner": "Jane Doe",
    "completionTime": "02:30:15",
    "category": null
  },
  "overlays": {
    "overlays": [
      {
        "type": "image",
        "start_time": 2.0,
        "duration": 5.0,
        "position": "top-right",
        "scale": 0.6,
        "rotation": 5,
        "opacity": 0.9
      },
      {
        "type": "text",
        "text": "Bib No: ${bibId}\nRunner: ${runner}\nCompletion Time: ${completionTime}\nCategory: ${category}",
        "start_time": 9.0,
        "duration": 2.0,
        "position": "center",
        "text_style": {
          "font_size": 60,
          "color": "#FFFFFF",
          "stroke_color": "#000000",
          "stroke_width": 3,
          "padding": 100,
          "align": "center",
          "line_spacing": 10,
          "max_width": 0.9,
          "char_animation": true,
          "char_fade_duration": 0.1,
          "char_delay": 0.03,
          "bg_gradient": {
            "start": "#000000CC",
            "end": "#00000000",
            "direction": "vertical"
          }
        }
      },
      {
        "type": "image_stack",
        "start_time": 12.0,
        "duration": 7.0,
        "position": "center",
        "bg_color": "#FFFFFF",
        "width": 0.7,
        "height": 0.7,
        "fit_mode": "cover",
        "rotation_range": 15
      }
    ]
  }
}
`
}
